package main

// Provider blank imports — each import activates a self-registering reader.
// Add new readers here as they are implemented.

import (
	_ "github.com/deploypilot/deploypilot/internal/adapter/github"
	_ "github.com/deploypilot/deploypilot/internal/adapter/gitlocal"
)
