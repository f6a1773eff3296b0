package command

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/Wyydra/rendezvous/internal/core/domain"
	"github.com/stretchr/testify/assert"
)

func TestSplitCommand(t *testing.T) {
	verb, arg := splitCommand("CALL  bob ")
	assert.Equal(t, "call", verb)
	assert.Equal(t, "bob", arg)

	verb, arg = splitCommand("who")
	assert.Equal(t, "who", verb)
	assert.Empty(t, arg)
}

func TestReadLines(t *testing.T) {
	lines := readLines(context.Background(), strings.NewReader("call bob\n\n  accept  \n"))

	var got []string
	for l := range lines {
		got = append(got, l)
	}
	assert.Equal(t, []string{"call bob", "accept"}, got)
}

func TestAcceptFailure(t *testing.T) {
	assert.Equal(t, "No incoming call", acceptFailure(domain.ErrNoPendingCall))

	msg := acceptFailure(fmt.Errorf("send CALL_ACCEPT to alice: %w", domain.ErrNotFound))
	assert.NotEqual(t, "No incoming call", msg)
	assert.Contains(t, msg, "still ringing")
	assert.Contains(t, msg, "send CALL_ACCEPT to alice")
}
