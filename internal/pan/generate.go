package pan

import (
	"crypto/rand"
	"fmt"
)

const defaultLength = 16

// Generate returns a random card number of the default length that starts
// with prefix and ends with a Luhn check digit.
func Generate(prefix string) (string, error) {
	if !isDigits(prefix) {
		return "", fmt.Errorf("prefix must contain digits only")
	}
	fill := defaultLength - 1 - len(prefix)
	if fill <= 0 {
		return "", fmt.Errorf("prefix too long: %s", prefix)
	}

	digits, err := randomDigits(fill)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}

	body := prefix + digits
	return body + string(checkDigit(body)), nil
}

// LuhnValid reports whether number is all digits with a valid check digit.
func LuhnValid(number string) bool {
	if len(number) < 2 || !isDigits(number) {
		return false
	}
	body := number[:len(number)-1]
	return number[len(number)-1] == checkDigit(body)
}

// randomDigits rejects bytes >= 250 so every digit is equally likely.
func randomDigits(count int) (string, error) {
	const threshold = 250
	out := make([]byte, 0, count)
	buf := make([]byte, 32)
	for len(out) < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			if len(out) == count {
				break
			}
			if b < threshold {
				out = append(out, '0'+b%10)
			}
		}
	}
	return string(out), nil
}

func checkDigit(body string) byte {
	sum, double := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return byte('0' + (10-sum%10)%10)
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
