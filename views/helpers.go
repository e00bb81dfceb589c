package views

import (
	"context"

	"github.com/AdamBeresnev/arena-hub/internal/middleware"
	users "github.com/AdamBeresnev/arena-hub/internal/user"
)

func GetUser(ctx context.Context) *users.User {
	return middleware.GetAuthenticatedUser(ctx)
}
