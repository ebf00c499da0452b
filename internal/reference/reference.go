package reference

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Generate produces a human-readable booking reference of the form
// PREFIX-YYMMDD-NNNN. The random suffix keeps same-day references apart;
// the unique constraint on the store is the actual collision guarantee.
func Generate(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("060102"), rand.IntN(10000))
}
