package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"mineShaftAPI/internal/task"
	"mineShaftAPI/services"
)

type TaskHandler struct {
	taskService *services.TaskService
}

func NewTaskHandler(taskService *services.TaskService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
	}
}

func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := services.TaskStatus(r.URL.Query().Get("filter"))
	switch status {
	case "":
		status = services.StatusAll
	case services.StatusAll, services.StatusActive, services.StatusCompleted:
	default:
		respondWithError(w, http.StatusBadRequest, "filter must be one of all, active, completed")
		return
	}

	tasks, err := h.taskService.List(ctx, services.TaskFilter{
		Status:   status,
		Category: r.URL.Query().Get("category"),
	})
	if err != nil {
		log.Printf("ListTasks: %v", err)
		respondWithStoreError(w, err, "Failed to list tasks")
		return
	}

	respondWithJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTasksInRange(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'start' must be RFC3339")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Query parameter 'end' must be RFC3339")
		return
	}
	if end.Before(start) {
		respondWithError(w, http.StatusBadRequest, "'end' is before 'start'")
		return
	}

	tasks, err := h.taskService.ListInRange(ctx, start, end)
	if err != nil {
		log.Printf("GetTasksInRange: %v", err)
		respondWithStoreError(w, err, "Failed to list tasks")
		return
	}

	respondWithJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req task.CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.taskService.Create(ctx, &req)
	if err != nil {
		log.Printf("CreateTask: %v", err)
		respondWithStoreError(w, err, "Failed to create task")
		return
	}

	respondWithJSON(w, http.StatusCreated, t)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	t, err := h.taskService.Get(ctx, id)
	if err != nil {
		log.Printf("GetTask: %v", err)
		respondWithStoreError(w, err, "Failed to get task")
		return
	}
	if t == nil {
		respondWithError(w, http.StatusNotFound, "Task not found")
		return
	}

	respondWithJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req task.UpdateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := h.taskService.Update(ctx, id, &req)
	if err != nil {
		log.Printf("UpdateTask: %v", err)
		respondWithStoreError(w, err, "Failed to update task")
		return
	}

	respondWithJSON(w, http.StatusOK, t)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.taskService.Delete(ctx, id); err != nil {
		log.Printf("DeleteTask: %v", err)
		respondWithStoreError(w, err, "Failed to delete task")
		return
	}

	respondWithJSON(w, http.StatusOK, operationResponse{Success: true})
}

// SetCompletion is the checkbox toggle.
func (h *TaskHandler) SetCompletion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	var req task.SetCompletionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := h.taskService.SetCompletion(ctx, id, req.Completed)
	if err != nil {
		log.Printf("SetCompletion: %v", err)
		respondWithStoreError(w, err, "Failed to update task")
		return
	}

	respondWithJSON(w, http.StatusOK, operationResponse{Success: updated})
}

func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	res, done := h.taskService.Complete(ctx, id)
	respondWithJSON(w, http.StatusOK, operationResponse{
		Success: done,
		Task:    res.Task,
		Outcome: res.Outcome,
	})
}

func (h *TaskHandler) FailTask(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	id, ok := taskID(w, r)
	if !ok {
		return
	}

	respondWithJSON(w, http.StatusOK, operationResponse{Success: h.taskService.Fail(ctx, id)})
}

func taskID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid task id")
		return uuid.Nil, false
	}
	return id, true
}
