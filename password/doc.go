// Package password hashes registration passwords and checks their
// composition.
//
// [Argon2] produces PHC strings of the form
//
//	$argon2id$v=19$m=<memory KiB>,t=<passes>,p=<lanes>$<salt>$<key>
//
// with salt and key in unpadded standard base64. [Argon2.Verify] reads the
// cost parameters back from the stored string, so raising Config later does
// not lock out existing users.
//
// [Policy] holds the registration rules: UTF-16 length bounds plus at least one
// digit, lower-case letter, upper-case letter and symbol. The engine applies
// it before hashing; this package never stores or logs plaintext.
package password
