package controllers

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
)

// HandleCustomerCreate adds a customer to the current user's book.
func HandleCustomerCreate(c *fiber.Ctx) error {
	customer := &models.Customer{}
	if err := c.BodyParser(customer); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	customer.ID = 0
	customer.UserID = currentUserID(c)

	if err := customer.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	if err := repository.GetGlobalFactory().GetCustomerRepository().Create(customer); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not create customer")
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"customer": customer})
}

// HandleCustomerList returns a page of the user's customers, or a search
// result when the q parameter is given.
func HandleCustomerList(c *fiber.Ctx) error {
	userID := currentUserID(c)
	repo := repository.GetGlobalFactory().GetCustomerRepository()

	if query := strings.TrimSpace(c.Query("q")); query != "" {
		customers, err := repo.Search(userID, query)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "search failed")
		}
		return c.JSON(fiber.Map{"customers": customers})
	}

	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	limit, _ := strconv.Atoi(c.Query("limit", "25"))
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	customers, err := repo.ListByUser(userID, offset, limit)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not load customers")
	}
	total, err := repo.CountByUser(userID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not load customers")
	}
	return c.JSON(fiber.Map{
		"customers": customers,
		"total":     total,
	})
}

// HandleCustomerGet returns one customer owned by the current user.
func HandleCustomerGet(c *fiber.Ctx) error {
	customerID := paramUint(c, "id")
	if customerID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid customer id")
	}

	customer, err := repository.GetGlobalFactory().GetCustomerRepository().
		GetByIDForUser(customerID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "customer not found")
	}
	return c.JSON(fiber.Map{"customer": customer})
}

// HandleCustomerUpdate modifies an existing customer.
func HandleCustomerUpdate(c *fiber.Ctx) error {
	customerID := paramUint(c, "id")
	if customerID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid customer id")
	}

	repo := repository.GetGlobalFactory().GetCustomerRepository()
	customer, err := repo.GetByIDForUser(customerID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "customer not found")
	}

	var body struct {
		Name    *string `json:"name"`
		Email   *string `json:"email"`
		Phone   *string `json:"phone"`
		Address *string `json:"address"`
		Notes   *string `json:"notes"`
	}
	if err := c.BodyParser(&body); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if body.Name != nil {
		customer.Name = *body.Name
	}
	if body.Email != nil {
		customer.Email = *body.Email
	}
	if body.Phone != nil {
		customer.Phone = *body.Phone
	}
	if body.Address != nil {
		customer.Address = *body.Address
	}
	if body.Notes != nil {
		customer.Notes = *body.Notes
	}

	if err := customer.Validate(); err != nil {
		return jsonError(c, fiber.StatusUnprocessableEntity, err.Error())
	}

	if err := repo.Update(customer); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not update customer")
	}
	return c.JSON(fiber.Map{"customer": customer})
}

// HandleCustomerDelete removes a customer.
func HandleCustomerDelete(c *fiber.Ctx) error {
	customerID := paramUint(c, "id")
	if customerID == 0 {
		return jsonError(c, fiber.StatusBadRequest, "invalid customer id")
	}

	repo := repository.GetGlobalFactory().GetCustomerRepository()
	customer, err := repo.GetByIDForUser(customerID, currentUserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusNotFound, "customer not found")
	}

	if err := repo.Delete(customer.ID); err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "could not delete customer")
	}
	return c.JSON(fiber.Map{"deleted": true})
}
