package limiter_test

import (
	"context"
	"fmt"

	"github.com/storyweave/ratelimit/limiter"
)

func ExampleLimiter_Check() {
	l, err := limiter.New(&limiter.Config{
		StorageType: limiter.StorageMemory,
		Tiers: map[string]limiter.Tier{
			"api": {Capacity: 2, RefillRate: 1, CostPerRequest: 1},
		},
	})
	if err != nil {
		panic(err)
	}

	for i := 0; i < 3; i++ {
		dec, err := l.Check(context.Background(), "user:123", "api")
		if err != nil {
			panic(err)
		}
		fmt.Println(dec.Allowed, dec.Remaining)
	}
	// Output:
	// true 1
	// true 0
	// false 0
}
