package converter

import (
	"time"

	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
)

// AppointmentToResponse converts an Appointment entity to AppointmentResponse DTO
func AppointmentToResponse(appointment *entity.Appointment) *dto.AppointmentResponse {
	if appointment == nil {
		return nil
	}

	response := &dto.AppointmentResponse{
		ID:              appointment.ID,
		PatientID:       appointment.PatientID,
		PractitionerID:  appointment.PractitionerID,
		AppointmentDate: appointment.AppointmentDate.Format(time.DateOnly),
		SlotLabel:       appointment.SlotLabel,
		Reason:          appointment.Reason,
		Status:          string(appointment.Status),
		StatusNote:      appointment.StatusNote,
		CreatedAt:       appointment.CreatedAt,
		UpdatedAt:       appointment.UpdatedAt,
	}

	// Include patient name if preloaded
	if appointment.Patient != nil {
		response.PatientName = appointment.Patient.Name
	}

	return response
}

// AppointmentsToResponses converts a slice of Appointment entities to slice of AppointmentResponse DTOs
func AppointmentsToResponses(appointments []entity.Appointment) []dto.AppointmentResponse {
	responses := make([]dto.AppointmentResponse, len(appointments))
	for i := range appointments {
		responses[i] = *AppointmentToResponse(&appointments[i])
	}
	return responses
}
