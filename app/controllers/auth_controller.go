package controllers

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sujit-baniya/flash"

	"github.com/fielddesk/fielddesk/app/models"
	"github.com/fielddesk/fielddesk/app/repository"
	"github.com/fielddesk/fielddesk/internal/pkg/database"
	"github.com/fielddesk/fielddesk/internal/pkg/session"
)

func HandleAuthLogin(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		// notice: in production you should not inform the user
		// with detailed messages about login failures
		user, err := repository.GetGlobalFactory().GetUserRepository().GetByEmail(c.FormValue("email"))
		if err != nil {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		if !models.CheckPasswordHash(c.FormValue("password"), user.Password) {
			fm["message"] = "There is a problem with the login process"

			return flash.WithError(c, fm).Redirect("/login")
		}

		sess, err := session.GetSessionStore().Get(c)
		if err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		sess.Set(AUTH_KEY, true)
		sess.Set(USER_ID, user.ID)
		sess.Set(USER_NAME, user.Name)
		sess.Set(USER_IS_ADMIN, user.Role == models.ROLE_ADMIN)

		if err := sess.Save(); err != nil {
			fm["message"] = fmt.Sprintf("something went wrong: %s", err)

			return flash.WithError(c, fm).Redirect("/login")
		}

		database.GetDB().Model(user).Update("last_login_at", time.Now())

		fm = fiber.Map{
			"type":    "success",
			"message": "Welcome back!",
		}

		return flash.WithSuccess(c, fm).Redirect("/")
	}

	return c.Render("auth/login", fiber.Map{
		"Title":      "Login",
		"IsLoggedIn": isLoggedIn(c),
		"Flash":      flash.Get(c),
	}, "layouts/main")
}

func HandleAuthLogout(c *fiber.Ctx) error {
	fm := fiber.Map{
		"type": "error",
	}

	sess, err := session.GetSessionStore().Get(c)
	if err != nil {
		fm["message"] = "logged out (no sess)"

		return flash.WithError(c, fm).Redirect("/login")
	}

	if err := sess.Destroy(); err != nil {
		fm["message"] = fmt.Sprintf("something went wrong: %s", err)

		return flash.WithError(c, fm).Redirect("/login")
	}

	fm = fiber.Map{
		"type":    "success",
		"message": "See you soon!",
	}

	c.Locals(FROM_PROTECTED, false)

	return flash.WithSuccess(c, fm).Redirect("/login")
}

func HandleAuthRegister(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodPost {
		fm := fiber.Map{
			"type": "error",
		}

		user, err := models.CreateUser(c.FormValue("name"), c.FormValue("email"), c.FormValue("password"))
		if err != nil {
			fm["message"] = fmt.Sprintf("invalid registration data: %s", err)

			return flash.WithError(c, fm).Redirect("/register")
		}
		user.CompanyName = c.FormValue("company_name")

		if err := repository.GetGlobalFactory().GetUserRepository().Create(user); err != nil {
			fm["message"] = "There is a problem with the registration process"

			return flash.WithError(c, fm).Redirect("/register")
		}

		fm = fiber.Map{
			"type":    "success",
			"message": "Account created, you can log in now",
		}

		return flash.WithSuccess(c, fm).Redirect("/login")
	}

	return c.Render("auth/register", fiber.Map{
		"Title":      "Register",
		"IsLoggedIn": isLoggedIn(c),
		"Flash":      flash.Get(c),
	}, "layouts/main")
}
