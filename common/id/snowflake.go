// Package id generates the int64 identifiers used for dependencies, change
// events and delivery records.
package id

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

// Epoch for ID timestamps: 2024-06-01T00:00:00Z
const epoch = 1717200000000

var (
	node *snowflake.Node
	once sync.Once
)

// Init sets up the generator. Each binary runs under its own node ID
// (server 1, worker 2, CLI 3) so IDs cannot collide across processes.
// Repeated calls are no-ops.
func Init(nodeID int64) error {
	var err error
	once.Do(func() {
		snowflake.Epoch = epoch
		node, err = snowflake.NewNode(nodeID)
	})
	return err
}

// New returns a time-ordered, globally unique ID.
func New() int64 {
	if node == nil {
		panic("id: Init not called")
	}
	return node.Generate().Int64()
}
