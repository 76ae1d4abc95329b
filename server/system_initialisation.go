package server

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-token-authority/clients"
	"github.com/rs/zerolog/log"
)

// InitialiseSystem registers the default client named in the config if it is missing, so a fresh
// deployment can log users in without any admin setup.
func (s *Server) InitialiseSystem(ctx context.Context) error {
	clientID := s.config.GetDefaultClientID()

	existing, err := s.services.Clients.GetByClientID(ctx, clientID)
	if err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to look up client %s: %w", clientID, err)
	}
	if existing != nil {
		log.Debug().Str("client_id", clientID).Msg("default client already registered")
		return nil
	}

	client := &clients.Client{
		ClientID:    clientID,
		Type:        clients.ClientTypePublic,
		Description: s.config.GetAppName() + " default client",
		Scopes:      []string{"openid", "profile", "email", "offline_access"},
	}
	if err := s.services.Clients.Upsert(ctx, client); err != nil {
		return fmt.Errorf("[Server InitialiseSystem] failed to register client %s: %w", clientID, err)
	}

	log.Info().
		Str("client_id", clientID).
		Str("base_url", s.config.GetBaseURL()).
		Str("login", s.config.GetBaseURL()+RouteAuthLogin).
		Str("refresh", s.config.GetBaseURL()+RouteAuthRefresh).
		Msg("registered default client")
	return nil
}
