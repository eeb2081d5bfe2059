package service

import (
	"fmt"
	"time"
)

var (
	spanishDays = [...]string{"Domingo", "Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado"}

	spanishMonths = [...]string{
		"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
		"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
	}
)

// FormatVisitWindow renders a visit time range in Spanish, e.g.
// "Viernes, 10 de Enero de 2025, 9:00 AM - 10:00 AM". Both bounds are shown
// in loc.
func FormatVisitWindow(start, end time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	start, end = start.In(loc), end.In(loc)
	return fmt.Sprintf("%s, %d de %s de %d, %s - %s",
		spanishDays[start.Weekday()],
		start.Day(),
		spanishMonths[start.Month()-1],
		start.Year(),
		clock12(start),
		clock12(end),
	)
}

func clock12(t time.Time) string {
	return t.Format("3:04 PM")
}
