package repo_test

import jwthelp "github.com/Skotchmaster/auth_service/pkg/jwt"

func hashOf(token string) string { return jwthelp.Sha256Hex(token) }
