// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Astralx Contributors

package identity

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a uniqueness constraint is violated,
// such as registering an email that is already taken.
var ErrConflict = errors.New("conflict")
