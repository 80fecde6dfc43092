// Package internal contains the implementation packages of ni.
//
// Boot flows through config, scanner, catalog and boot into a registry
// store; requests flow from server through app into routes and dispatch,
// with renderer producing explicit and automatic views.
package internal
