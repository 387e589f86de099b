// Package people is the row type, filter and codecs of the people listing.
package people

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Person is one row of the people table. Field tags keep the same flat names
// in every encoding and in the database.
type Person struct {
	ID       int64     `json:"id" db:"id"`
	Email    string    `json:"email" db:"email"`
	FullName string    `json:"full_name" db:"full_name"`
	Country  string    `json:"country" db:"country"`
	Birthday time.Time `json:"birthday" db:"birthday"`
	Phone    string    `json:"phone" db:"phone"`
	IP       string    `json:"ip" db:"ip"`
}

// Columns in display order.
var Columns = []string{"id", "email", "full_name", "country", "birthday", "phone", "ip"}

var (
	firstNames = []string{"Ada", "Bjorn", "Chiara", "Dmitri", "Elif", "Farah", "Goran", "Hana", "Ivo", "Jun"}
	lastNames  = []string{"Novak", "Larsen", "Rossi", "Ivanov", "Yilmaz", "Haddad", "Petrovic", "Sato", "Horvat", "Kim"}
	countries  = []string{"Norway", "Italy", "Japan", "Croatia", "Turkey", "Jordan", "Korea", "Poland"}
)

// Generate returns n deterministic people with IDs 1..n. Birthdays fall between
// 1900-01-01 and 2022-12-31.
func Generate(n int, seed uint64) []Person {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	lo := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	days := int(time.Date(2022, 12, 31, 0, 0, 0, 0, time.UTC).Sub(lo).Hours() / 24)

	out := make([]Person, n)
	for i := range out {
		id := int64(i + 1)
		first := firstNames[r.IntN(len(firstNames))]
		last := lastNames[r.IntN(len(lastNames))]
		out[i] = Person{
			ID:       id,
			Email:    fmt.Sprintf("%s.%s%d@example.com", lower(first), lower(last), id),
			FullName: first + " " + last,
			Country:  countries[r.IntN(len(countries))],
			Birthday: lo.AddDate(0, 0, r.IntN(days+1)),
			Phone:    fmt.Sprintf("+%d %03d %04d", 1+r.IntN(98), r.IntN(1000), r.IntN(10000)),
			IP:       fmt.Sprintf("%d.%d.%d.%d", 1+r.IntN(223), r.IntN(256), r.IntN(256), 1+r.IntN(254)),
		}
	}
	return out
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
