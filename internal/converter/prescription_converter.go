package converter

import (
	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
)

func PrescriptionToResponse(prescription *entity.Prescription) *dto.PrescriptionResponse {
	if prescription == nil {
		return nil
	}

	lines := make([]dto.LineItemResponse, 0, len(prescription.LineItems))
	for _, l := range prescription.LineItems {
		lines = append(lines, dto.LineItemResponse(l))
	}

	return &dto.PrescriptionResponse{
		ID:                 prescription.ID,
		PrescriptionNumber: prescription.PrescriptionNumber,
		PatientID:          prescription.PatientID,
		PractitionerID:     prescription.PractitionerID,
		LineItems:          lines,
		Symptoms:           prescription.Symptoms,
		Diagnosis:          prescription.Diagnosis,
		FollowUpDate:       prescription.FollowUpDate,
		Status:             string(prescription.Status),
		CreatedAt:          prescription.CreatedAt,
		UpdatedAt:          prescription.UpdatedAt,
	}
}

func PrescriptionsToResponses(prescriptions []entity.Prescription) []dto.PrescriptionResponse {
	responses := make([]dto.PrescriptionResponse, len(prescriptions))
	for i := range prescriptions {
		responses[i] = *PrescriptionToResponse(&prescriptions[i])
	}
	return responses
}
