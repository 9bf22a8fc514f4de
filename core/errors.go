// Copyright 2024 The go-votechain Authors
// This file is part of the go-votechain library.
//
// The go-votechain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-votechain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-votechain library. If not, see <http://www.gnu.org/licenses/>.

package core

import "errors"

var (
	// ErrBlockNotFound is returned when no block is stored at a requested
	// index. The sync responder relies on it to detect requests past its
	// head.
	ErrBlockNotFound = errors.New("block not found")

	// ErrInvalidNewBlock is returned when an appended block does not extend
	// the head, a reorg suffix does not link, or a seal check fails.
	ErrInvalidNewBlock = errors.New("invalid new block")

	// ErrChainSealed is returned when appending to a chain closed by a seal
	// block.
	ErrChainSealed = errors.New("chain is sealed")
)
