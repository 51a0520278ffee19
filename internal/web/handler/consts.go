package handler

import "errors"

const (
	// RootPath is the root path the route group.
	RootPath = "/"
)

// ErrNilDependency is returned by Init when the app or a collaborator is nil.
var ErrNilDependency = errors.New("app or handler dependency is nil")
