package node

import "github.com/gin-gonic/gin"

// Node is an HTTP-facing process the CLI can run and report on.
type Node interface {
	NodeID() string
	Kind() string
	HTTPRouter() *gin.Engine
}
