package market

import "time"

// Timestamp aliases time.Time so exported structs read in market terms.
type Timestamp = time.Time
