package utils

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
	nodeErr  error
)

// InitIDs initializes the snowflake node used for locally generated ids.
// Only the first call has an effect.
func InitIDs(nodeID int64) error {
	nodeOnce.Do(func() {
		node, nodeErr = snowflake.NewNode(nodeID)
	})
	return nodeErr
}

// NewID returns a time-ordered unique id. InitIDs must have succeeded,
// otherwise node 0 is used.
func NewID() int64 {
	if err := InitIDs(0); err != nil {
		panic(fmt.Sprintf("snowflake node: %v", err))
	}
	return node.Generate().Int64()
}

// ParseSnowflake converts a Discord string id to int64.
func ParseSnowflake(kind, id string) (int64, error) {
	v, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s ID %s: %w", kind, id, err)
	}
	return v, nil
}

// FormatSnowflake is the inverse of ParseSnowflake.
func FormatSnowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}
