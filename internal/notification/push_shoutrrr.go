package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/sarawakflora/fieldwatch/internal/errors"
	"github.com/sarawakflora/fieldwatch/internal/privacy"
)

// sender is the part of the shoutrrr router used for delivery.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// ShoutrrrProvider sends via nicholas-fedor/shoutrrr.
// One router serves all configured URLs.
type ShoutrrrProvider struct {
	name    string
	enabled bool
	urls    []string
	sender  sender
	timeout time.Duration
}

// NewShoutrrrProvider creates a provider; ValidateConfig builds the router.
func NewShoutrrrProvider(name string, enabled bool, urls []string, timeout time.Duration) *ShoutrrrProvider {
	sp := &ShoutrrrProvider{
		name:    strings.TrimSpace(name),
		enabled: enabled,
		urls:    slices.Clone(urls),
		timeout: timeout,
	}
	if sp.name == "" {
		sp.name = "shoutrrr"
	}
	return sp
}

func (s *ShoutrrrProvider) GetName() string { return s.name }
func (s *ShoutrrrProvider) IsEnabled() bool { return s.enabled }

// ValidateConfig parses the service URLs and builds the router.
func (s *ShoutrrrProvider) ValidateConfig() error {
	if !s.enabled {
		return nil
	}
	if len(s.urls) == 0 {
		return fmt.Errorf("at least one URL is required")
	}
	router, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		// service URLs carry tokens
		return privacy.WrapError(err)
	}
	if s.timeout > 0 {
		router.Timeout = s.timeout
	}
	router.SetLogger(log.New(io.Discard, "", 0))
	s.sender = router
	return nil
}

// Send delivers n to every URL and returns the first failure.
func (s *ShoutrrrProvider) Send(ctx context.Context, n *Notification) error {
	if s.sender == nil {
		return fmt.Errorf("shoutrrr sender not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	for _, err := range s.sender.Send(n.Message, &params) {
		if err != nil {
			return errors.New(privacy.WrapError(err)).
				Component("notification").
				Category(errors.CategoryNotification).
				Context("provider", s.name).
				Build()
		}
	}
	return nil
}
