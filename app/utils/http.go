package utils

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
)

func DebugResponse(resp *http.Response) {
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Error(err.Error())
	}
	slog.Debug(fmt.Sprintf("got response %s", string(b)))
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

func ValidPassword(password string) bool {
	return len(password) >= 8
}
