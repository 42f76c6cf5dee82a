package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// DefaultBillPrefix is printed in front of every bill number.
const DefaultBillPrefix = "DT"

// BillNumbers issues bill numbers that are unique, strictly increasing per node and
// carry their issuance time.
type BillNumbers struct {
	prefix string
	node   *snowflake.Node
}

// NewBillNumbers creates a generator for node (0-1023). Processes sharing a database need distinct nodes.
func NewBillNumbers(prefix string, node int64) (*BillNumbers, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("bill number node %d: %w", node, err)
	}
	return &BillNumbers{prefix: prefix, node: n}, nil
}

// Next returns a fresh bill number.
func (b *BillNumbers) Next() string {
	return b.prefix + b.node.Generate().String()
}

// IssuedAt recovers the time a bill number was generated.
func (b *BillNumbers) IssuedAt(number string) (time.Time, error) {
	if !strings.HasPrefix(number, b.prefix) {
		return time.Time{}, fmt.Errorf("bill number %q lacks prefix %q", number, b.prefix)
	}
	id, err := snowflake.ParseString(strings.TrimPrefix(number, b.prefix))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse bill number %q: %w", number, err)
	}
	return time.UnixMilli(id.Time()), nil
}
