package core

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
)

// Queue names the application a workflow instance and its activities are routed to.
type Queue string

var (
	_ sql.Scanner   = (*Queue)(nil)
	_ driver.Valuer = Queue("")
)

func (q Queue) Value() (driver.Value, error) {
	return string(q), nil
}

func (q *Queue) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*q = Queue(v)
	case []byte:
		*q = Queue(v)
	case nil:
		*q = QueueDefault
	default:
		return fmt.Errorf("cannot scan %T into queue", value)
	}

	return nil
}

const (
	QueueDefault = Queue("default")
)

var validQueueName = regexp.MustCompile(`^[a-zA-Z0-9_.-]{1,63}$`)

// ValidQueue ensures that the queue name is valid.
func ValidQueue(q Queue) error {
	if !validQueueName.MatchString(string(q)) {
		return errors.New("invalid queue name")
	}

	return nil
}
