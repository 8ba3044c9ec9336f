/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownSession   = errors.New("unknown session")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrOverQuota        = errors.New("too many cards selected")
	ErrInvalidCard      = errors.New("invalid card")
	ErrDuplicateTerm    = errors.New("card term already in use")
	ErrInvalidCommand   = errors.New("invalid command")
	ErrInsufficientDeck = errors.New("not enough cards remaining in deck")
	ErrNotReady         = errors.New("not all players have submitted their cards")
	ErrWrongPhase       = errors.New("command not allowed in current phase")
	ErrGameInProgress   = errors.New("game already in progress")
)

// errorCode maps an error onto the stable code sent back to the issuing client.
func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownSession):
		return "unknown_session"
	case errors.Is(err, ErrUnknownPlayer):
		return "unknown_player"
	case errors.Is(err, ErrOverQuota):
		return "over_quota"
	case errors.Is(err, ErrInvalidCard):
		return "invalid_card"
	case errors.Is(err, ErrDuplicateTerm):
		return "duplicate_term"
	case errors.Is(err, ErrInvalidCommand):
		return "invalid_command"
	case errors.Is(err, ErrInsufficientDeck):
		return "insufficient_deck"
	case errors.Is(err, ErrNotReady):
		return "not_ready"
	case errors.Is(err, ErrWrongPhase):
		return "wrong_phase"
	case errors.Is(err, ErrGameInProgress):
		return "game_in_progress"
	default:
		return "internal"
	}
}

func setupLogging(cfg *Config) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: logDate})
}

// logf is the access log; it only prints with --verbose.
func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Info().Msgf(format, args...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
