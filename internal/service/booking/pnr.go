package booking

import "crypto/rand"

// pnrAlphabet omits 0/O/1/I to keep confirmation codes unambiguous when read
// aloud or typed.
const (
	pnrAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	pnrLength   = 6
)

// GeneratePNR returns a 6-character confirmation code. Uniqueness across paid
// bookings is enforced by the caller against the booking store.
func GeneratePNR() string {
	buf := make([]byte, pnrLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err) // crypto/rand read failing is unrecoverable
	}
	for i, b := range buf {
		buf[i] = pnrAlphabet[int(b)%len(pnrAlphabet)]
	}
	return string(buf)
}
