package uploads

import (
	"github.com/google/uuid"
)

func GenerateID() (string, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return u.String(), nil
}
