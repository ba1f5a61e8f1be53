package openai

import "time"

const closeWriteTimeout = time.Second

func deadlineSoon() time.Time {
	return time.Now().Add(closeWriteTimeout)
}
