// Package graph defines the scene graph types for Arbor.
// The scene graph is a persistent tree of nodes carrying tagged components.
// Every edit returns a new graph that shares unchanged nodes with the old
// one, so a graph captured by the history stays valid after later edits.
package graph
