package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lifequest-app/lifequest/lifequest/database/models"
	"github.com/lifequest-app/lifequest/lifequest/database/repositories"
	"github.com/lifequest-app/lifequest/lifequest/services"
)

type handlers struct {
	generator    *services.QuestGenerator
	questService *services.QuestService
	tracker      *services.QuestTracker
	userRepo     repositories.UserRepository
	habitRepo    repositories.HabitRepository
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

type createUserRequest struct {
	Username string `json:"username"`
	Timezone string `json:"timezone"`
}

func (h *handlers) createUser(c *fiber.Ctx) error {
	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Username) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "username is required")
	}

	user := &models.User{
		Username: strings.TrimSpace(req.Username),
		Timezone: req.Timezone,
	}
	if err := h.userRepo.Create(c.Context(), user); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user":    user,
	})
}

type createHabitRequest struct {
	Name string `json:"name"`
}

func (h *handlers) createHabit(c *fiber.Ctx) error {
	var req createHabitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}

	habit := &models.Habit{
		UserID: currentUserID(c),
		Name:   strings.TrimSpace(req.Name),
	}
	if err := h.habitRepo.Create(c.Context(), habit); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"habit":   habit,
	})
}

func (h *handlers) listQuests(c *fiber.Ctx) error {
	status := c.Query("status")
	questType := c.Query("type")

	if status != "" && !models.ValidQuestStatus(status) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown status filter")
	}
	if questType != "" && !models.ValidQuestType(questType) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown type filter")
	}

	quests, err := h.questService.ListQuests(c.Context(), currentUserID(c), status, questType)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"quests":  quests,
	})
}

type generateRequest struct {
	Type     string `json:"type"`
	Timezone string `json:"timezone"`
}

func (h *handlers) generateQuests(c *fiber.Ctx) error {
	var req generateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !models.ValidQuestType(req.Type) {
		return fiber.NewError(fiber.StatusBadRequest, "type must be daily or weekly")
	}

	result, err := h.generator.Generate(c.Context(), currentUserID(c), req.Type, req.Timezone)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"quests":   result.Quests,
		"dropped":  result.Dropped,
		"problems": result.Problems,
	})
}

func (h *handlers) activateQuest(c *fiber.Ctx) error {
	questID, err := parseQuestID(c)
	if err != nil {
		return err
	}

	quest, err := h.questService.Activate(c.Context(), currentUserID(c), questID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "quest": quest})
}

func (h *handlers) cancelQuest(c *fiber.Ctx) error {
	questID, err := parseQuestID(c)
	if err != nil {
		return err
	}

	quest, err := h.questService.Cancel(c.Context(), currentUserID(c), questID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "quest": quest})
}

func (h *handlers) claimQuest(c *fiber.Ctx) error {
	questID, err := parseQuestID(c)
	if err != nil {
		return err
	}

	result, err := h.questService.Claim(c.Context(), currentUserID(c), questID)
	if err != nil {
		return err
	}

	body := fiber.Map{"success": true, "quest": result.Quest}
	if result.XP != nil {
		body["xp"] = fiber.Map{
			"awarded":    result.Quest.XPReward,
			"total":      result.XP.NewTotal,
			"level":      result.XP.NewLevel,
			"leveled_up": result.XP.LeveledUp,
		}
	}

	return c.JSON(body)
}

type progressRequest struct {
	CriterionType string  `json:"criterion_type"`
	HabitID       int64   `json:"habit_id"`
	Date          string  `json:"date"`
	Count         int     `json:"count"`
	Spent         float64 `json:"spent"`
	Allowance     float64 `json:"allowance"`
	Timezone      string  `json:"timezone"`
}

func (h *handlers) reportProgress(c *fiber.Ctx) error {
	var req progressRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if !models.ValidCriterionType(req.CriterionType) {
		return fiber.NewError(fiber.StatusBadRequest, "unknown criterion_type")
	}

	event := services.ProgressEvent{
		HabitID:   req.HabitID,
		Count:     req.Count,
		Spent:     req.Spent,
		Allowance: req.Allowance,
	}
	if req.Date != "" {
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		event.Date = date
	}

	if err := h.tracker.ReportProgress(c.Context(), currentUserID(c), req.CriterionType, event, req.Timezone); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true})
}

func parseQuestID(c *fiber.Ctx) (int64, error) {
	questID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || questID <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid quest id")
	}
	return questID, nil
}
