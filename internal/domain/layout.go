package domain

import (
	"sort"
	"time"
)

// SeatLayoutItem is the cached view of one seat
type SeatLayoutItem struct {
	SeatID       string `json:"seatId"`
	SeatNumber   string `json:"seatNumber"`
	SeatGrade    string `json:"seatGrade"`
	Price        int64  `json:"price"`
	RowNumber    int    `json:"rowNumber"`
	ColumnNumber int    `json:"columnNumber"`
	IsAvailable  bool   `json:"isAvailable"`
}

// SeatLayout is the seat map of a schedule as served to buyers
type SeatLayout struct {
	ScheduleID string           `json:"scheduleId"`
	Seats      []SeatLayoutItem `json:"seats"`
	BuiltAt    time.Time        `json:"builtAt"`
}

// BuildSeatLayout snapshots seats at now, ordered by row then column
func BuildSeatLayout(scheduleID string, seats []*Seat, now time.Time) *SeatLayout {
	items := make([]SeatLayoutItem, 0, len(seats))
	for _, s := range seats {
		items = append(items, SeatLayoutItem{
			SeatID:       s.ID,
			SeatNumber:   s.SeatNumber,
			SeatGrade:    s.Grade,
			Price:        s.Price,
			RowNumber:    s.RowNumber,
			ColumnNumber: s.ColumnNumber,
			IsAvailable:  s.IsAvailable(now),
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].RowNumber != items[j].RowNumber {
			return items[i].RowNumber < items[j].RowNumber
		}
		return items[i].ColumnNumber < items[j].ColumnNumber
	})
	return &SeatLayout{ScheduleID: scheduleID, Seats: items, BuiltAt: now}
}

// Available returns only the seats that could be held
func (l *SeatLayout) Available() []SeatLayoutItem {
	out := make([]SeatLayoutItem, 0, len(l.Seats))
	for _, item := range l.Seats {
		if item.IsAvailable {
			out = append(out, item)
		}
	}
	return out
}
