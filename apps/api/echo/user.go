package echoapi

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/ratelimit"
)

type userApi struct {
	svc      user.ServiceInterface
	conf     *core.Config
	validate *validator.Validate
	logger   core.Logger
}

func registerUserAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps, conf *core.Config) {
	api := userApi{
		svc:      deps.UserSvc,
		conf:     conf,
		validate: deps.Validate,
		logger:   deps.Logger,
	}
	limit := rateLimitMiddleware(deps.ResetLimiter, deps.Logger)

	// un-authed endpoints
	g.POST("/inscription", api.register)
	g.POST("/login", api.login)
	g.POST("/forgot-password", api.forgotPassword, limit)
	g.POST("/reset-password", api.resetPassword, limit)
	g.GET("/verify-reset-token/:token", api.verifyResetToken)

	// authed endpoints
	g.POST("/change-password", api.changePassword, jwt)

	pg := g.Group("/profile", jwt)
	pg.GET("", api.profile)
	pg.PUT("", api.updateProfile)
	pg.PUT("/update", api.updateProfile)
	pg.POST("/photo", api.setPhoto)
	pg.DELETE("/photo", api.removePhoto)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, RegisterResponse{Message: "Inscription réussie !", UserID: usr.ID})
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(GetUserClaims(usr, api.conf), api.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Message: "Connexion réussie",
		Token:   token,
		User: LoginUser{
			ID:        usr.ID,
			LastName:  usr.LastName,
			FirstName: usr.FirstName,
			Email:     usr.Email,
			Role:      usr.Role,
		},
	})
}

func (api *userApi) forgotPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		api.logger.Error(fmt.Sprintf("requesting password reset: %v", err), err)
	}
	return ctx.JSON(http.StatusOK, MessageResponse{
		Message: "Si un compte est associé à cette adresse email, un code de réinitialisation vous a été envoyé.",
	})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Mot de passe réinitialisé avec succès"})
}

func (api *userApi) verifyResetToken(ctx echo.Context) error {
	usr, err := api.svc.VerifyResetToken(ctx.Request().Context(), ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "verifying reset token")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Token valide", "email": usr.Email})
}

func (api *userApi) changePassword(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data user.ChangePassword
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ChangePassword")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.ChangePassword(ctx.Request().Context(), claims.ID, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "Mot de passe mis à jour avec succès"})
}

func (api *userApi) profile(ctx echo.Context) error {
	usr, err := api.contextUser(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, echo.Map{"user": usr})
}

func (api *userApi) updateProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data user.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.UpdateProfile(ctx.Request().Context(), claims.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Profil mis à jour avec succès", "user": usr})
}

func (api *userApi) setPhoto(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	up, err := formUpload(ctx, user.ProfilePhotoRule.Field)
	if err != nil {
		return err
	}
	usr, err := api.svc.SetProfilePhoto(ctx.Request().Context(), claims.ID, up)
	if err != nil {
		return errors.Wrap(err, "setting profile photo")
	}
	return ctx.JSON(http.StatusOK, echo.Map{
		"message":  "Photo de profil mise à jour avec succès",
		"photoUrl": usr.ProfilePhotoURL,
		"user":     usr,
	})
}

func (api *userApi) removePhoto(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	usr, err := api.svc.RemoveProfilePhoto(ctx.Request().Context(), claims.ID)
	if err != nil {
		return errors.Wrap(err, "removing profile photo")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"message": "Photo de profil supprimée avec succès", "user": usr})
}

func (api *userApi) contextUser(ctx echo.Context) (user.User, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), claims.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	return usr, nil
}

func rateLimitMiddleware(limiter ratelimit.Limiter, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ok, err := limiter.Allow(ctx.Request().Context(), ctx.RealIP())
			if err != nil {
				// fail open
				logger.Warn(fmt.Sprintf("rate limiter: %v", err), err)
				return next(ctx)
			}
			if !ok {
				return errTooManyRequests
			}
			return next(ctx)
		}
	}
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginUser struct {
		ID        string `json:"id"`
		LastName  string `json:"nom"`
		FirstName string `json:"prenom"`
		Email     string `json:"email"`
		Role      string `json:"role"`
	}

	LoginResponse struct {
		Message string    `json:"message"`
		Token   string    `json:"token"`
		User    LoginUser `json:"user"`
	}

	RegisterResponse struct {
		Message string `json:"message"`
		UserID  string `json:"userId"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
