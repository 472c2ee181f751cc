package apiclient

import (
	"golang.org/x/oauth2"

	"github.com/feeta/feeta/pkg/cerr"
)

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, cerr.NewError(cerr.Unauthenticated, "token file is empty", nil)
}
