// Package hatch turns a natural-language description into project files
// by way of a remote generation service.
package hatch

// Version is the hatch release version.
const Version = "0.1.0"
