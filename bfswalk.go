// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bfswalk traverses one or more POSIX file trees with a bounded
// number of open file descriptors, POSIX-correct symlink and cycle
// handling, and pluggable breadth-first, depth-first, or deepening search
// order. Walk is the package's single entry point; everything else is a
// type used to configure or receive data from a walk.
package bfswalk

import "github.com/bfswalk/bfswalk/internal/walk"

// Re-exported configuration and result types, so callers never need to
// import internal/walk directly.
type (
	Action     = walk.Action
	VisitKind  = walk.VisitKind
	FileType   = walk.FileType
	Payload    = walk.Payload
	Callback   = walk.Callback
	Flags      = walk.Flags
	Strategy   = walk.Strategy
	MountTable = walk.MountTable
	Config     = walk.Config
	Logger     = walk.Logger
	Metrics    = walk.Metrics
)

const (
	ActionContinue      = walk.ActionContinue
	ActionPruneSubtree  = walk.ActionPruneSubtree
	ActionPruneSiblings = walk.ActionPruneSiblings
	ActionStop          = walk.ActionStop

	VisitPre  = walk.VisitPre
	VisitPost = walk.VisitPost

	TypeUnknown     = walk.TypeUnknown
	TypeRegular     = walk.TypeRegular
	TypeDirectory   = walk.TypeDirectory
	TypeSymlink     = walk.TypeSymlink
	TypeBlockDevice = walk.TypeBlockDevice
	TypeCharDevice  = walk.TypeCharDevice
	TypeFIFO        = walk.TypeFIFO
	TypeSocket      = walk.TypeSocket
	TypeError       = walk.TypeError

	StrategyBFS                  = walk.StrategyBFS
	StrategyDFS                  = walk.StrategyDFS
	StrategyIterativeDeepening   = walk.StrategyIterativeDeepening
	StrategyExponentialDeepening = walk.StrategyExponentialDeepening
)

var (
	ErrUnknownAction = walk.ErrUnknownAction
	ErrCycle         = walk.ErrCycle
)

// Walk runs a single traversal per cfg and returns the first error
// encountered, or nil on clean completion (including a callback-requested
// stop).
func Walk(cfg Config) error {
	return walk.New(cfg).Run()
}
