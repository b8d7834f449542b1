package domain

// Snapshot is the single piece of data on display: the latest header and
// its forecast. It is replaced wholesale for every accepted header.
type Snapshot struct {
	Seq        uint64
	Block      *Block
	Forecast   ForecastResult
	Emphasized bool
}

// Empty reports whether no header has been accepted yet.
func (s Snapshot) Empty() bool {
	return s.Block == nil
}
