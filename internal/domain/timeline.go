package domain

import "time"

// TimelineEvent описывает запись журнала жизненного цикла заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}
