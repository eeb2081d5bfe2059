package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// VisitType is the dental procedure booked.
type VisitType string

const (
	VisitConsulta       VisitType = "CONSULTA"
	VisitLimpieza       VisitType = "LIMPIEZA"
	VisitEmpaste        VisitType = "EMPASTE"
	VisitExtraccion     VisitType = "EXTRACCION"
	VisitEndodoncia     VisitType = "ENDODONCIA"
	VisitOrtodoncia     VisitType = "ORTODONCIA"
	VisitBlanqueamiento VisitType = "BLANQUEAMIENTO"
	VisitUrgencia       VisitType = "URGENCIA"
	VisitOtro           VisitType = "OTRO"
)

var visitTypes = map[VisitType]struct{}{
	VisitConsulta: {}, VisitLimpieza: {}, VisitEmpaste: {}, VisitExtraccion: {}, VisitEndodoncia: {},
	VisitOrtodoncia: {}, VisitBlanqueamiento: {}, VisitUrgencia: {}, VisitOtro: {},
}

func (t VisitType) Valid() bool {
	_, ok := visitTypes[t]
	return ok
}

// Label returns the type capitalised for display, e.g. "LIMPIEZA" -> "Limpieza".
func (t VisitType) Label() string {
	s := string(t)
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + strings.ToLower(s[size:])
}

// VisitStatus is the lifecycle state of a visit. Any status may be set from
// any other through an explicit status update.
type VisitStatus string

const (
	StatusProgramada VisitStatus = "PROGRAMADA"
	StatusConfirmada VisitStatus = "CONFIRMADA"
	StatusEnCurso    VisitStatus = "EN_CURSO"
	StatusCompletada VisitStatus = "COMPLETADA"
	StatusCancelada  VisitStatus = "CANCELADA"
	StatusNoAsistio  VisitStatus = "NO_ASISTIO"
)

func (s VisitStatus) Valid() bool {
	switch s {
	case StatusProgramada, StatusConfirmada, StatusEnCurso, StatusCompletada, StatusCancelada, StatusNoAsistio:
		return true
	}
	return false
}

// Party is the {id, name, email} summary of a patient or clinic.
type Party struct {
	ID    int64
	Name  string
	Email string
}

// Visit is an appointment between a patient and a clinic.
type Visit struct {
	ID        int64
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Type      VisitType
	Status    VisitStatus
	Notes     *string
	PatientID int64
	ClinicID  int64
	CreatedAt time.Time
	UpdatedAt time.Time

	Patient *Party
	Clinic  *Party
}

func (v *Visit) Interval() Interval {
	return Interval{Start: v.StartTime, End: v.EndTime}
}
