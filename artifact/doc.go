// Package artifact keeps the bodies of files agents generate, scoped by task
// id. InMemoryStore holds them in process; DirStore writes them below a root
// directory as <root>/<task id>/<path>.
package artifact
