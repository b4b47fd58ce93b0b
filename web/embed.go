package web

import (
	_ "embed"
)

// LayoutHTML is the page shell the server renders application markup into.
//
//go:embed layout.html
var LayoutHTML string
