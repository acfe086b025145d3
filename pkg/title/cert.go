package title

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// SignatureType identifies the algorithm of a signature block.
type SignatureType uint32

const (
	SignatureTypeRSA4096 SignatureType = 0x10000
	SignatureTypeRSA2048 SignatureType = 0x10001
	SignatureTypeECC     SignatureType = 0x10002
)

// sigLen returns the signature length and the padding that follows it before
// the signed body begins.
func (s SignatureType) sigLen() (sig int, pad int, err error) {
	switch s {
	case SignatureTypeRSA4096:
		return 512, 60, nil
	case SignatureTypeRSA2048:
		return 256, 60, nil
	case SignatureTypeECC:
		return 60, 64, nil
	default:
		return 0, 0, fmt.Errorf("unknown signature type 0x%X", uint32(s))
	}
}

// KeyType identifies the algorithm of a certificate's public key.
type KeyType uint32

const (
	KeyTypeRSA4096 KeyType = 0
	KeyTypeRSA2048 KeyType = 1
	KeyTypeECC     KeyType = 2
)

// keyLen returns the public key length and its trailing padding.
func (k KeyType) keyLen() (key int, pad int, err error) {
	switch k {
	case KeyTypeRSA4096:
		return 512 + 4, 52, nil
	case KeyTypeRSA2048:
		return 256 + 4, 52, nil
	case KeyTypeECC:
		return 60, 60, nil
	default:
		return 0, 0, fmt.Errorf("unknown key type 0x%X", uint32(k))
	}
}

var (
	// ErrUnsupportedSignature is returned when signature verification is
	// requested for an ECC-signed structure.
	ErrUnsupportedSignature = errors.New("ECC signature verification is not supported")
	// ErrMissingCertificate is returned when a chain lacks the certificate
	// needed for the requested operation.
	ErrMissingCertificate = errors.New("certificate chain is missing a required certificate")
)

// Certificate is one entry of a title's certificate chain. Padding bytes are
// retained as parsed so a chain re-serializes byte for byte.
type Certificate struct {
	SignatureType SignatureType
	Signature     []byte
	sigPadding    []byte
	issuer        [64]byte
	KeyType       KeyType
	childName     [64]byte
	KeyID         uint32
	PublicKey     []byte
	keyPadding    []byte
}

// ParseCertificate reads one certificate from the start of data and returns it
// together with the number of bytes consumed.
func ParseCertificate(data []byte) (*Certificate, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("certificate data is too short to contain a signature type")
	}
	c := &Certificate{}
	c.SignatureType = SignatureType(binary.BigEndian.Uint32(data[0x00:0x04]))
	sigLen, sigPad, err := c.SignatureType.sigLen()
	if err != nil {
		return nil, 0, err
	}
	offset := 4
	if len(data) < offset+sigLen+sigPad+64+4+64+4 {
		return nil, 0, fmt.Errorf("certificate data is truncated at %d bytes", len(data))
	}
	c.Signature = append([]byte(nil), data[offset:offset+sigLen]...)
	offset += sigLen
	c.sigPadding = append([]byte(nil), data[offset:offset+sigPad]...)
	offset += sigPad
	copy(c.issuer[:], data[offset:offset+64])
	offset += 64
	c.KeyType = KeyType(binary.BigEndian.Uint32(data[offset : offset+4]))
	offset += 4
	copy(c.childName[:], data[offset:offset+64])
	offset += 64
	c.KeyID = binary.BigEndian.Uint32(data[offset : offset+4])
	offset += 4
	keyLen, keyPad, err := c.KeyType.keyLen()
	if err != nil {
		return nil, 0, err
	}
	if len(data) < offset+keyLen+keyPad {
		return nil, 0, fmt.Errorf("certificate public key is truncated at %d bytes", len(data))
	}
	c.PublicKey = append([]byte(nil), data[offset:offset+keyLen]...)
	offset += keyLen
	c.keyPadding = append([]byte(nil), data[offset:offset+keyPad]...)
	offset += keyPad
	return c, offset, nil
}

// ToBytes serializes the certificate, reproducing the original bytes exactly
// when the certificate came from ParseCertificate.
func (c *Certificate) ToBytes() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint32(c.SignatureType))
	buf.Write(c.Signature)
	buf.Write(c.sigPadding)
	buf.Write(c.issuer[:])
	binary.Write(buf, binary.BigEndian, uint32(c.KeyType))
	buf.Write(c.childName[:])
	binary.Write(buf, binary.BigEndian, c.KeyID)
	buf.Write(c.PublicKey)
	buf.Write(c.keyPadding)
	return buf.Bytes()
}

// Issuer returns the issuing chain of the certificate, e.g. "Root-CA00000001".
func (c *Certificate) Issuer() string {
	return strings.TrimRight(string(c.issuer[:]), "\x00")
}

// ChildName returns the name of the certificate itself, e.g. "CP00000004".
func (c *Certificate) ChildName() string {
	return strings.TrimRight(string(c.childName[:]), "\x00")
}

// signedBody returns the region of the certificate covered by its signature.
func (c *Certificate) signedBody() []byte {
	raw := c.ToBytes()
	_, sigPad, _ := c.SignatureType.sigLen()
	return raw[4+len(c.Signature)+sigPad:]
}

// rsaPublicKey converts the raw public key data into a usable RSA key.
func (c *Certificate) rsaPublicKey() (*rsa.PublicKey, error) {
	var modLen int
	switch c.KeyType {
	case KeyTypeRSA4096:
		modLen = 512
	case KeyTypeRSA2048:
		modLen = 256
	default:
		return nil, ErrUnsupportedSignature
	}
	modulus := new(big.Int).SetBytes(c.PublicKey[:modLen])
	exponent := binary.BigEndian.Uint32(c.PublicKey[modLen : modLen+4])
	return &rsa.PublicKey{N: modulus, E: int(exponent)}, nil
}

// verifySignature checks an RSA PKCS#1 v1.5 SHA-1 signature made by this
// certificate's key over body.
func (c *Certificate) verifySignature(sigType SignatureType, signature []byte, body []byte) error {
	if sigType == SignatureTypeECC {
		return ErrUnsupportedSignature
	}
	key, err := c.rsaPublicKey()
	if err != nil {
		return err
	}
	digest := sha1.Sum(body)
	return rsa.VerifyPKCS1v15(key, crypto.SHA1, digest[:], signature)
}

// certRole extracts the role of a certificate from its name. Chain lookup is
// by substring because the numeric suffix differs between retail and dev
// chains; a certificate named outside the usual convention will not be found.
func certRole(name string) string {
	switch {
	case strings.Contains(name, "CA"):
		return "CA"
	case strings.Contains(name, "CP"):
		return "CP"
	case strings.Contains(name, "XS"):
		return "XS"
	default:
		return ""
	}
}

// CertificateChain is the set of certificates a WAD carries: the CA
// certificate, the CP certificate that signs TMDs, and the XS certificate
// that signs Tickets.
type CertificateChain struct {
	Certificates []*Certificate
}

// ParseCertificateChain reads consecutive certificates until data runs out.
func ParseCertificateChain(data []byte) (*CertificateChain, error) {
	chain := &CertificateChain{}
	offset := 0
	for offset < len(data) {
		cert, n, err := ParseCertificate(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("parsing certificate at offset %d: %w", offset, err)
		}
		chain.Certificates = append(chain.Certificates, cert)
		offset += n
	}
	return chain, nil
}

// ToBytes serializes the chain in its stored order.
func (cc *CertificateChain) ToBytes() []byte {
	var out []byte
	for _, cert := range cc.Certificates {
		out = append(out, cert.ToBytes()...)
	}
	return out
}

func (cc *CertificateChain) certByRole(role string) (*Certificate, error) {
	for _, cert := range cc.Certificates {
		if certRole(cert.ChildName()) == role {
			return cert, nil
		}
	}
	return nil, fmt.Errorf("%w: no %s certificate present", ErrMissingCertificate, role)
}

// CACert returns the certificate authority certificate.
func (cc *CertificateChain) CACert() (*Certificate, error) { return cc.certByRole("CA") }

// TMDCert returns the CP certificate used to sign TMDs.
func (cc *CertificateChain) TMDCert() (*Certificate, error) { return cc.certByRole("CP") }

// TicketCert returns the XS certificate used to sign Tickets.
func (cc *CertificateChain) TicketCert() (*Certificate, error) { return cc.certByRole("XS") }

// VerifyCert checks a child certificate's signature against its issuer in
// this chain. The CA certificate itself is signed by the Root key, which is
// not carried in WADs, so only CP and XS certificates can be checked.
func (cc *CertificateChain) VerifyCert(child *Certificate) error {
	issuerParts := strings.Split(child.Issuer(), "-")
	issuerName := issuerParts[len(issuerParts)-1]
	var parent *Certificate
	for _, cert := range cc.Certificates {
		if cert.ChildName() == issuerName {
			parent = cert
			break
		}
	}
	if parent == nil {
		return fmt.Errorf("%w: issuer %q not present", ErrMissingCertificate, issuerName)
	}
	return parent.verifySignature(child.SignatureType, child.Signature, child.signedBody())
}

// VerifyTMD checks a TMD's signature against the chain's CP certificate.
// Fakesigned TMDs fail this check.
func (cc *CertificateChain) VerifyTMD(t *TMD) error {
	cert, err := cc.TMDCert()
	if err != nil {
		return err
	}
	raw := t.ToBytes()
	return cert.verifySignature(SignatureType(t.SignatureType), t.Signature[:], raw[signedBodyOffset:])
}

// VerifyTicket checks a Ticket's signature against the chain's XS certificate.
// Fakesigned Tickets fail this check.
func (cc *CertificateChain) VerifyTicket(t *Ticket) error {
	cert, err := cc.TicketCert()
	if err != nil {
		return err
	}
	raw := t.ToBytes()
	return cert.verifySignature(SignatureType(t.SignatureType), t.Signature[:], raw[signedBodyOffset:])
}
