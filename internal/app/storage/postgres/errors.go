package postgres

import (
	"errors"
	"github.com/jackc/pgerrcode"
	pg "github.com/lib/pq"
)

func pgCode(err error) string {
	var pgErr *pg.Error
	if errors.As(err, &pgErr) {
		return string(pgErr.Code)
	}
	return ""
}

func isIntegrityViolation(err error) bool {
	return pgerrcode.IsIntegrityConstraintViolation(pgCode(err))
}

func isSerializationFailure(err error) bool {
	code := pgCode(err)
	return code == pgerrcode.SerializationFailure || code == pgerrcode.DeadlockDetected
}
