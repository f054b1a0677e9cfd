package converter

import (
	"healconnect/internal/delivery/dto"
	"healconnect/internal/domain/entity"
)

// PatientToResponse converts a Patient entity to PatientResponse DTO
func PatientToResponse(patient *entity.Patient) *dto.PatientResponse {
	if patient == nil {
		return nil
	}

	visits := make([]dto.VisitResponse, 0, len(patient.VisitHistory))
	for _, v := range patient.VisitHistory {
		medicines := make([]dto.MedicineGivenResponse, 0, len(v.MedicinesGiven))
		for _, m := range v.MedicinesGiven {
			medicines = append(medicines, dto.MedicineGivenResponse(m))
		}
		visits = append(visits, dto.VisitResponse{
			Timestamp:      v.Timestamp,
			PractitionerID: v.PractitionerID,
			Symptoms:       v.Symptoms,
			Diagnosis:      v.Diagnosis,
			PrescriptionID: v.PrescriptionID,
			MedicinesGiven: medicines,
			FollowUpDate:   v.FollowUpDate,
		})
	}

	return &dto.PatientResponse{
		ID:                     patient.ID,
		PatientCode:            patient.PatientCode,
		AccountID:              patient.AccountID,
		Name:                   patient.Name,
		Mobile:                 patient.Mobile,
		Email:                  patient.Email,
		Age:                    patient.Age,
		Gender:                 patient.Gender,
		Address:                patient.Address,
		MedicalHistory:         patient.MedicalHistory,
		Source:                 string(patient.Source),
		CampName:               patient.CampName,
		AssignedPractitionerID: patient.AssignedPractitionerID,
		VisitHistory:           visits,
		LastVisit:              patient.LastVisit,
		NextAppointment:        patient.NextAppointment,
		CreatedAt:              patient.CreatedAt,
		UpdatedAt:              patient.UpdatedAt,
	}
}

// PatientsToResponses converts a slice of Patient entities to slice of PatientResponse DTOs
func PatientsToResponses(patients []entity.Patient) []dto.PatientResponse {
	responses := make([]dto.PatientResponse, len(patients))
	for i := range patients {
		responses[i] = *PatientToResponse(&patients[i])
	}
	return responses
}
