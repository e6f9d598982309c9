package containers_test

import (
	"math/big"

	"github.com/coredir/entrycache/lib/containers"
)

var _ containers.Ordered[*big.Int] = (*big.Int)(nil)
