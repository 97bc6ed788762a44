// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import "errors"

var (
	ErrNoStoryboard    = errors.New("store: no storyboard loaded")
	ErrShotNotFound    = errors.New("store: shot not found")
	ErrMessageNotFound = errors.New("store: message not found")
	ErrInvalidOrder    = errors.New("store: order is not a permutation of the current shots")
	ErrInvalidRole     = errors.New("store: invalid message role")
	ErrInvalidShot     = errors.New("store: invalid shot")
)
