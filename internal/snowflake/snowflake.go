package snowflake

import "github.com/bwmarrin/snowflake"

var node *snowflake.Node

// Init initializes the process-wide snowflake node. Node ID must be unique
// across writer processes sharing a database (0-1023).
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}
	node = n
	return nil
}

// NextID returns a new unique, roughly time-ordered ID.
func NextID() int64 {
	return node.Generate().Int64()
}
