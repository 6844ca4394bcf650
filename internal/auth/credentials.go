package auth

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/clipshare/backend/internal/apperr"
	"github.com/clipshare/backend/internal/models"
	"github.com/clipshare/backend/internal/repositories"
)

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

// RegisterInput carries the fields supplied at sign-up.
type RegisterInput struct {
	Username  string
	Email     string
	FullName  string
	Password  string
	AvatarURL string
	CoverURL  string
}

// Normalize trims every field and lower-cases the username and email.
// The password is left untouched.
func (in RegisterInput) Normalize() RegisterInput {
	in.Username = NormalizeHandle(in.Username)
	in.Email = NormalizeHandle(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	in.AvatarURL = strings.TrimSpace(in.AvatarURL)
	in.CoverURL = strings.TrimSpace(in.CoverURL)
	return in
}

// Validate checks the text fields of a normalized input. Asset URLs are
// checked by Register because they only exist after upload.
func (in RegisterInput) Validate() error {
	if in.Username == "" || in.Email == "" || in.FullName == "" || strings.TrimSpace(in.Password) == "" {
		return apperr.Validation("all fields are required")
	}
	if err := validateUsername(in.Username); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return apperr.Validation("invalid email address")
	}
	return validatePassword(in.Password)
}

// Usernames may not contain "@": login treats such identifiers as emails.
func validateUsername(username string) error {
	if strings.Contains(username, "@") {
		return apperr.Validation("username must not contain @")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) > maxPasswordBytes {
		return apperr.Validation("password must be at most 72 bytes")
	}
	return nil
}

// NormalizeHandle is the canonical form of usernames and emails.
func NormalizeHandle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// CredentialStore owns password hashing and account creation.
type CredentialStore struct {
	accounts  repositories.AccountRepository
	cost      int
	dummyHash []byte

	NowFunc func() time.Time
}

// NewCredentialStore constructs a CredentialStore hashing with the given bcrypt cost.
// Costs outside bcrypt's accepted range fall back to bcrypt.DefaultCost.
func NewCredentialStore(accounts repositories.AccountRepository, cost int) *CredentialStore {
	if accounts == nil {
		panic("auth: account repository must not be nil")
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	// Compared against when an account has no hash so both paths cost one bcrypt run.
	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cost)
	if err != nil {
		panic("auth: generate dummy hash: " + err.Error())
	}

	return &CredentialStore{accounts: accounts, cost: cost, dummyHash: dummy}
}

// Register creates an account. Uniqueness is decided by the repository insert.
func (c *CredentialStore) Register(ctx context.Context, in RegisterInput) (models.PublicAccount, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return models.PublicAccount{}, err
	}
	if in.AvatarURL == "" {
		return models.PublicAccount{}, apperr.Validation("avatar file is required")
	}

	hash, err := c.hashPassword(in.Password)
	if err != nil {
		return models.PublicAccount{}, err
	}

	now := c.now()
	account := models.Account{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		FullName:     in.FullName,
		PasswordHash: hash,
		AvatarURL:    in.AvatarURL,
		CoverURL:     in.CoverURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := c.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicAccount{}, apperr.Conflict("username or email already exists")
		}
		return models.PublicAccount{}, apperr.Internal("failed to create account", err)
	}

	return account.Public(), nil
}

// CheckAvailable reports a Conflict when username or email is already taken.
// It lets callers fail before spending an upload; Register still relies on
// the store's uniqueness constraint.
func (c *CredentialStore) CheckAvailable(ctx context.Context, username, email string) error {
	if _, err := c.accounts.FindByUsername(ctx, NormalizeHandle(username)); err == nil {
		return apperr.Conflict("username or email already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperr.Internal("failed to check username", err)
	}

	if _, err := c.accounts.FindByEmail(ctx, NormalizeHandle(email)); err == nil {
		return apperr.Conflict("username or email already exists")
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return apperr.Internal("failed to check email", err)
	}
	return nil
}

// VerifyPassword reports whether candidate matches the account's stored hash.
func (c *CredentialStore) VerifyPassword(account models.Account, candidate string) bool {
	hash := []byte(account.PasswordHash)
	if len(hash) == 0 {
		_ = bcrypt.CompareHashAndPassword(c.dummyHash, []byte(candidate))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(candidate)) == nil
}

// Authenticate resolves identifier (a username, or an email when it contains
// "@") and checks the password. Unknown accounts and wrong passwords are
// indistinguishable to the caller.
func (c *CredentialStore) Authenticate(ctx context.Context, identifier, password string) (models.Account, error) {
	identifier = NormalizeHandle(identifier)
	if identifier == "" || password == "" {
		return models.Account{}, apperr.Validation("username or email and password are required")
	}

	var (
		account models.Account
		err     error
	)
	if strings.Contains(identifier, "@") {
		account, err = c.accounts.FindByEmail(ctx, identifier)
	} else {
		account, err = c.accounts.FindByUsername(ctx, identifier)
	}
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return models.Account{}, apperr.Internal("failed to load account", err)
	}

	if !c.VerifyPassword(account, password) {
		return models.Account{}, apperr.Unauthorized("invalid credentials")
	}
	return account, nil
}

// ChangePassword replaces the stored hash after verifying the current password.
func (c *CredentialStore) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return apperr.Validation("old and new passwords are required")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	account, err := c.accounts.FindByID(ctx, accountID)
	if err != nil {
		return accountLookupError(err)
	}

	if !c.VerifyPassword(account, oldPassword) {
		return apperr.Validation("invalid old password")
	}

	hash, err := c.hashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := c.accounts.UpdatePassword(ctx, accountID, hash); err != nil {
		return accountLookupError(err)
	}
	return nil
}

// UpdateDetails changes the username and full name.
func (c *CredentialStore) UpdateDetails(ctx context.Context, accountID, username, fullName string) (models.PublicAccount, error) {
	username = NormalizeHandle(username)
	fullName = strings.TrimSpace(fullName)
	if username == "" || fullName == "" {
		return models.PublicAccount{}, apperr.Validation("username and full name are required")
	}
	if err := validateUsername(username); err != nil {
		return models.PublicAccount{}, err
	}

	account, err := c.accounts.UpdateDetails(ctx, accountID, username, fullName)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return models.PublicAccount{}, apperr.Conflict("username already exists")
		}
		return models.PublicAccount{}, accountLookupError(err)
	}
	return account.Public(), nil
}

// UpdateAvatar stores a newly uploaded avatar URL.
func (c *CredentialStore) UpdateAvatar(ctx context.Context, accountID, avatarURL string) (models.PublicAccount, error) {
	if strings.TrimSpace(avatarURL) == "" {
		return models.PublicAccount{}, apperr.Validation("avatar file is required")
	}
	account, err := c.accounts.UpdateAvatar(ctx, accountID, avatarURL)
	if err != nil {
		return models.PublicAccount{}, accountLookupError(err)
	}
	return account.Public(), nil
}

// UpdateCover stores a newly uploaded cover image URL.
func (c *CredentialStore) UpdateCover(ctx context.Context, accountID, coverURL string) (models.PublicAccount, error) {
	if strings.TrimSpace(coverURL) == "" {
		return models.PublicAccount{}, apperr.Validation("cover image file is required")
	}
	account, err := c.accounts.UpdateCover(ctx, accountID, coverURL)
	if err != nil {
		return models.PublicAccount{}, accountLookupError(err)
	}
	return account.Public(), nil
}

func (c *CredentialStore) hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", apperr.Validation("password must be at most 72 bytes")
	}
	if err != nil {
		return "", apperr.Internal("failed to secure password", err)
	}
	return string(hashed), nil
}

func (c *CredentialStore) now() time.Time {
	if c.NowFunc != nil {
		return c.NowFunc()
	}
	return time.Now().UTC()
}

func accountLookupError(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return apperr.NotFound("account not found")
	}
	return apperr.Internal("failed to update account", err)
}
