// Package idgen generates the identifiers docpdf hands out: conversion job
// ids, per-file result ids and HTTP request ids.
//
// Generators are plain functions so callers (and tests) can swap the
// strategy at construction time.
package idgen

import (
	"crypto/rand"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// NanoID returns a Generator that produces base-36 IDs of the given length.
// Short and URL-safe; used for request ids where UUIDv7 is too verbose.
func NanoID(length int) Generator {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	return func() string {
		buf := make([]byte, length)
		if _, err := rand.Read(buf); err != nil {
			panic("idgen: crypto/rand failed: " + err.Error())
		}
		for i := range buf {
			buf[i] = alphabet[int(buf[i])%len(alphabet)]
		}
		return string(buf)
	}
}

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, so job ids list in creation order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Type-scoped generators.
var (
	JobID     = Prefixed("job_", UUIDv7())
	ResultID  = Prefixed("res_", UUIDv7())
	RequestID = Prefixed("req_", NanoID(12))
)

// Parse validates an id of the form <prefix><uuid> and returns it.
func Parse(prefix, s string) (string, error) {
	rest, ok := strings.CutPrefix(s, prefix)
	if !ok {
		return "", fmt.Errorf("idgen: %q does not start with %q", s, prefix)
	}
	if _, err := uuid.Parse(rest); err != nil {
		return "", fmt.Errorf("idgen: invalid UUID in %q: %w", s, err)
	}
	return s, nil
}
