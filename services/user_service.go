package services

import (
	"context"
	"log"
	"strings"
	"time"

	"backend/config"
	"backend/models"
	"backend/utils"
)

type ProfileInput struct {
	FullName         string   `json:"full_name"`
	Birthday         string   `json:"birthday"` // sent as YYYY-MM-DD
	HeightCm         float64  `json:"height_cm"`
	HealthConditions []string `json:"health_conditions"`
	WellnessGoals    []string `json:"wellness_goals"`
	Onboarded        bool     `json:"onboarded"`
}

func GetUserProfile(ctx context.Context, userID uint) (map[string]interface{}, error) {
	var user models.User
	result := config.DB.WithContext(ctx).
		Where("id = ? AND disabled = ?", userID, false).
		First(&user)
	if result.Error != nil {
		return nil, &NotFoundError{Resource: "user"}
	}

	age := 0
	if !user.Birthday.IsZero() {
		age = utils.CalculateAge(user.Birthday)
	}

	profile := map[string]interface{}{
		"id":                user.ID,
		"email":             user.Email,
		"full_name":         user.FullName,
		"age":               age,
		"height_cm":         user.HeightCm,
		"health_conditions": splitCSV(user.HealthConditions),
		"wellness_goals":    splitCSV(user.WellnessGoals),
		"onboarded":         user.Onboarded,
	}
	if !user.Birthday.IsZero() {
		profile["birthday"] = user.Birthday.Format("2006-01-02")
	}

	// BMI from profile height + latest canonical weight, when both exist
	var weight models.HealthRecord
	err := config.DB.WithContext(ctx).
		Where("user_id = ? AND metric_type = ? AND is_canonical = ?", userID, MetricWeight, true).
		Order("recorded_at DESC").
		First(&weight).Error
	if err == nil && user.HeightCm > 0 {
		if bmi, err := utils.CalculateBMI(user.HeightCm, weight.Value); err == nil {
			profile["bmi"] = bmi
			profile["bmi_category"] = utils.BMICategory(bmi)
		}
	}

	return profile, nil
}

func UpdateUserProfile(ctx context.Context, userID uint, input ProfileInput) error {
	var user models.User
	result := config.DB.WithContext(ctx).
		Where("id = ? AND disabled = ?", userID, false).
		First(&user)
	if result.Error != nil {
		return &NotFoundError{Resource: "user"}
	}

	if input.FullName != "" {
		user.FullName = input.FullName
	}
	if input.Birthday != "" {
		birthday, err := time.Parse("2006-01-02", input.Birthday)
		if err != nil {
			return &ValidationError{Field: "birthday", Reason: "expected YYYY-MM-DD"}
		}
		user.Birthday = birthday
	}
	if input.HeightCm > 0 {
		user.HeightCm = input.HeightCm
	}
	if len(input.HealthConditions) > 0 {
		user.HealthConditions = strings.Join(input.HealthConditions, ",")
	}
	if len(input.WellnessGoals) > 0 {
		user.WellnessGoals = strings.Join(input.WellnessGoals, ",")
	}
	user.Onboarded = input.Onboarded

	return config.DB.WithContext(ctx).Save(&user).Error
}

// DeleteAccount disables the user, cascades their health data away, and sends
// a confirmation email. The email is best-effort.
func DeleteAccount(ctx context.Context, userID uint, healthData *HealthDataService) (map[string]int64, error) {
	var user models.User
	if err := config.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, &NotFoundError{Resource: "user"}
	}

	counts, err := healthData.DeleteUserData(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Disabled = true
	if err := config.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, &ExternalServiceError{Service: "database", Op: "disable user", Err: err}
	}

	if err := utils.SendDeletionEmail(user.Email); err != nil {
		log.Printf("account deletion email to %s failed: %v", user.Email, err)
	}

	return counts, nil
}

func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
