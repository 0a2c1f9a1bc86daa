package logging

import "time"

var timeZero = time.Time{}
