package enums

// LedgerEventType labels the append-only stock/points audit rows.
type LedgerEventType string

const (
	LedgerEventTypeReserve LedgerEventType = "reserve"
	LedgerEventTypeRelease LedgerEventType = "release"
)

// String implements fmt.Stringer.
func (l LedgerEventType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerEventType.
func (l LedgerEventType) IsValid() bool {
	return l == LedgerEventTypeReserve || l == LedgerEventTypeRelease
}
