// Copyright 2025 UMH Systems GmbH
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package marshal

import "regexp"

// secretHashPatterns recognize stored password hash formats. LDAP-style hashes
// start with "{" and would otherwise be sniffed as JSON.
var secretHashPatterns = []*regexp.Regexp{
	// bcrypt
	regexp.MustCompile(`^\$2[abxy]?\$\d{2}\$`),
	// argon2, scrypt and pbkdf2 in PHC string format
	regexp.MustCompile(`^\$argon2(id|i|d)\$`),
	regexp.MustCompile(`^\$scrypt\$`),
	regexp.MustCompile(`^\$pbkdf2(-sha(1|256|512))?\$`),
	// crypt(3) md5, sha256, sha512
	regexp.MustCompile(`^\$[156]\$`),
	// LDAP userPassword schemes
	regexp.MustCompile(`^\{(SSHA|SHA|SSHA256|SSHA512|SHA256|SHA512|CRYPT|MD5|SMD5)\}`),
	regexp.MustCompile(`^\{PBKDF2(-SHA(1|256|512))?\}`),
	regexp.MustCompile(`^\{ARGON2\}`),
}

// IsSecretHash reports whether s looks like a stored password hash.
func IsSecretHash(s string) bool {
	for _, p := range secretHashPatterns {
		if p.MatchString(s) {
			return true
		}
	}

	return false
}
