package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AdamBeresnev/arena-hub/internal/bracket"
	"github.com/AdamBeresnev/arena-hub/internal/utils"
	"github.com/google/uuid"
)

// SkippedLine is an import line that did not turn into a registration.
type SkippedLine struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type ImportResult struct {
	Imported []bracket.Registration `json:"imported"`
	Skipped  []SkippedLine          `json:"skipped"`
}

// ImportRegistrations registers one team per line of text:
//
//	player name, email, phone[, team name[, discord]]
//
// Every team gets the event's game. Lines starting with # are ignored and bad lines are
// reported back instead of failing the import. Good lines are stored together or not at all.
func (s *EventService) ImportRegistrations(ctx context.Context, eventID uuid.UUID, text string) (*ImportResult, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &ImportResult{
		Imported: []bracket.Registration{},
		Skipped:  []SkippedLine{},
	}
	registeredAt := s.now().UTC()

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				result.Skipped = append(result.Skipped, SkippedLine{Line: parseErr.Line, Reason: parseErr.Err.Error()})
				continue
			}
			return nil, fmt.Errorf("failed to read import: %w", err)
		}
		line, _ := reader.FieldPos(0)

		input, err := importLine(record, event.GameID)
		if err == nil {
			err = s.validateStruct(input)
		}
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedLine{Line: line, Reason: err.Error()})
			continue
		}

		result.Imported = append(result.Imported, bracket.Registration{
			ID:           uuid.New(),
			EventID:      eventID,
			PlayerName:   input.PlayerName,
			TeamName:     utils.StringOrNil(input.TeamName),
			GameID:       input.GameID,
			Email:        input.Email,
			Phone:        input.Phone,
			Discord:      utils.StringOrNil(input.Discord),
			RegisteredAt: registeredAt,
		})
	}

	if len(result.Imported) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, writeFailed("begin transaction", err)
	}
	defer tx.Rollback()

	if err := s.store.CreateRegistrationsTx(ctx, tx, result.Imported); err != nil {
		return nil, writeFailed("import registrations", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, writeFailed("commit registrations", err)
	}
	return result, nil
}

func importLine(record []string, gameID string) (RegistrationInput, error) {
	if len(record) < 3 || len(record) > 5 {
		return RegistrationInput{}, fmt.Errorf("%w: expected 3 to 5 fields, got %d", ErrValidationFailed, len(record))
	}
	field := func(i int) string {
		if i < len(record) {
			return strings.TrimSpace(record[i])
		}
		return ""
	}
	return RegistrationInput{
		PlayerName: field(0),
		Email:      field(1),
		Phone:      field(2),
		TeamName:   field(3),
		Discord:    field(4),
		GameID:     gameID,
	}, nil
}
