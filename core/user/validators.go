package user

import (
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/remindme/core"
)

var (
	allRolesTag  = "allroles"
	allRolesText = "invalid role"

	usernameOrEmailTag  = "username_or_email"
	usernameOrEmailText = "one of username or email is required"

	roleRequiredTag  = "role_required"
	roleRequiredText = "this field is required"

	// password policy: lecturers & admins need 8 characters, students 6
	pwdMinLen        = map[string]int{RoleAdmin: 8, RoleLecturer: 8, RoleStudent: 6}
	pwdMinLenTag     = "pwdminlen"
	pwdMinLenText    = "password is too short"
	pwdNoSpaceTag    = "pwdnospace"
	pwdNoSpaceText   = "password must not contain whitespace"
	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = "password cannot be entirely numeric"
	pwdMaxSim        = .7
	pwdAttrSimTag    = "pwdtoosim"
	pwdAttrSimText   = "password cannot be similar to user attributes"
)

// InitValidators registers the user validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(allRolesTag, allRolesValidation)
	core.RegisterCustomTranslation(validate, translator, allRolesTag, allRolesText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{})
	core.RegisterCustomTranslation(validate, translator, usernameOrEmailTag, usernameOrEmailText)
	core.RegisterCustomTranslation(validate, translator, roleRequiredTag, roleRequiredText)
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// allRolesValidation checks that the role is one of AllRoles
func allRolesValidation(fl validator.FieldLevel) bool {
	role := fl.Field().String()
	for _, r := range AllRoles {
		if role == r {
			return true
		}
	}
	return false
}

// userStructValidation does struct level validation on NewUser and UpdateUser structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validateRoleFields(usr, sl)
		validatePassword(usr.Password, usr.Role, sl, usr.Name, usr.Username, usr.Email, usr.StudentNumber)
	case UpdateUser:
		if usr.Password != "" {
			role := RoleStudent
			for _, r := range usr.roles {
				if RolePriority(r) > RolePriority(role) {
					role = r
				}
			}
			validatePassword(usr.Password, role, sl, usr.Name, usr.Email)
		}
	}
}

// validateRoleFields checks the fields each role needs:
// - admin: username or email
// - lecturer: email, phone, department
// - student: email, phone, student number, department
func validateRoleFields(nu NewUser, sl validator.StructLevel) {
	required := func(empty bool, val interface{}, field, structField string) {
		if empty {
			sl.ReportError(val, field, structField, roleRequiredTag, "")
		}
	}

	switch nu.Role {
	case RoleAdmin:
		if nu.Username == "" && nu.Email == "" {
			sl.ReportError(nu.Username, "username", "Username", usernameOrEmailTag, "")
			sl.ReportError(nu.Email, "email", "Email", usernameOrEmailTag, "")
		}
	case RoleLecturer:
		required(nu.Email == "", nu.Email, "email", "Email")
		required(nu.Phone == "", nu.Phone, "phone", "Phone")
		required(nu.DepartmentID == 0, nu.DepartmentID, "department_id", "DepartmentID")
	case RoleStudent:
		required(nu.Email == "", nu.Email, "email", "Email")
		required(nu.Phone == "", nu.Phone, "phone", "Phone")
		required(nu.StudentNumber == "", nu.StudentNumber, "student_id", "StudentNumber")
		required(nu.DepartmentID == 0, nu.DepartmentID, "department_id", "DepartmentID")
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8 (6 for students)
// - no whitespace
// - no all numeric
// - no user attrs similarity
func validatePassword(pwd, role string, sl validator.StructLevel, attrs ...string) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	minLen, ok := pwdMinLen[role]
	if !ok {
		minLen = pwdMinLen[RoleAdmin]
	}
	if len(pwd) < minLen {
		reportErr(pwdMinLenTag)
		return
	}

	var digitCount int
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
	}
	if digitCount == len([]rune(pwd)) {
		reportErr(pwdNotAllNumTag)
		return
	}

	lpwd := strings.ToLower(pwd)
	for _, attr := range attrs {
		if attr == "" {
			continue
		}
		ratio := difflib.NewMatcher(strings.Split(lpwd, ""), strings.Split(strings.ToLower(attr), "")).QuickRatio()
		if ratio >= pwdMaxSim {
			reportErr(pwdAttrSimTag)
			return
		}
	}
}
