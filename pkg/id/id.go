package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces ULID trade ids. Trade ids bind a buy to its
// eventual sell, so they must never collide or be reused; ULIDs are
// time-sortable, which keeps the ledger file and journal queries in
// open order. Safe for concurrent use.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
}

// NewGenerator seeds a PRNG from crypto/rand so ids are unpredictable.
// Monotonic entropy keeps ids generated within the same millisecond
// sortable.
func NewGenerator() *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// New returns the next trade id.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	uid, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.entropy)
	if err != nil {
		// Only possible if entropy is exhausted or time goes backwards.
		panic(err)
	}
	return uid.String()
}
